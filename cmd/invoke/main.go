// Command invoke triggers the deployed processing Lambda for one frame and
// prints the returned result document.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
)

// invokeEvent is the request payload of the processing Lambda.
type invokeEvent struct {
	InputS3URI    string   `json:"input_s3_uri"`
	Unwarp        bool     `json:"unwarp"`
	Rotate        bool     `json:"rotate"`
	RotationAngle *float64 `json:"rotation_angle,omitempty"`
	Analyze       bool     `json:"analyze"`
	Views         []string `json:"views,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	Model         string   `json:"model,omitempty"`
	FOV           float64  `json:"fov,omitempty"`
	ViewAngle     float64  `json:"view_angle,omitempty"`
}

// invokeResponse is the Lambda's proxy-style response envelope.
type invokeResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func main() {
	// Parse command line arguments
	functionName := flag.String("function", "vibecast-process-image", "Lambda function name")
	region := flag.String("region", "us-east-1", "AWS region")
	inputURI := flag.String("input", "", "s3:// URI of the fisheye frame")
	unwarp := flag.Bool("unwarp", false, "Unwarp the frame into the five views")
	rotate := flag.Float64("rotate", 0, "Rotate the frame by this angle")
	analyze := flag.Bool("analyze", false, "Analyze the views with the vision model")
	viewList := flag.String("views", "", "Comma-separated views to analyze (N,E,S,W,B); default all")
	prompt := flag.String("prompt", "", "Override the analysis prompt")
	model := flag.String("model", "", "Override the analysis model")
	timeout := flag.Duration("timeout", 5*time.Minute, "Invocation timeout")
	flag.Parse()

	if *inputURI == "" {
		flag.Usage()
		os.Exit(1)
	}

	event := invokeEvent{
		InputS3URI: *inputURI,
		Unwarp:     *unwarp,
		Analyze:    *analyze,
		Prompt:     *prompt,
		Model:      *model,
	}
	if *rotate != 0 {
		event.Rotate = true
		event.RotationAngle = rotate
	}
	if *viewList != "" {
		for _, v := range strings.Split(*viewList, ",") {
			event.Views = append(event.Views, strings.TrimSpace(v))
		}
	}
	if !event.Unwarp && !event.Rotate && !event.Analyze {
		log.Fatalf("Nothing to do: pass -unwarp, -rotate or -analyze")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to encode event: %v", err)
	}

	sess, err := session.NewSession(aws.NewConfig().WithRegion(*region))
	if err != nil {
		log.Fatalf("Failed to create AWS session: %v", err)
	}
	client := lambda.New(sess)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Invoking %s for %s...\n", *functionName, *inputURI)
	out, err := client.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(*functionName),
		Payload:      payload,
	})
	if err != nil {
		log.Fatalf("Invocation failed: %v", err)
	}
	if out.FunctionError != nil {
		log.Fatalf("Function error: %s\n%s", aws.StringValue(out.FunctionError), out.Payload)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		log.Fatalf("Failed to decode response: %v", err)
	}

	// The body is itself JSON; pretty-print it when possible.
	var body interface{}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		fmt.Println(resp.Body)
	} else {
		pretty, _ := json.MarshalIndent(body, "", "  ")
		fmt.Println(string(pretty))
	}

	if resp.StatusCode >= 400 {
		log.Fatalf("Processing failed with status %d", resp.StatusCode)
	}
	fmt.Printf("Completed with status %d\n", resp.StatusCode)
}
