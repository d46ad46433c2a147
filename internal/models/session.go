// Package models holds the shared data types exchanged between the capture
// daemon, the processing pipeline and the stored result documents.
package models

import "time"

// Session groups the captures of one uploader run.
type Session struct {
	// ID is the session identifier, e.g. "session_20260831_120000"
	ID string `json:"session_id"`

	// StartTime and EndTime bound the session; EndTime is nil while the
	// session is running
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	// Place is an optional human label for where the camera is
	Place string `json:"place,omitempty"`

	// CaptureCount is the number of frames captured so far
	CaptureCount int `json:"capture_count"`
}

// NewSession starts a session stamped with the given time.
func NewSession(now time.Time, place string) *Session {
	return &Session{
		ID:        "session_" + now.Format("20060102_150405"),
		StartTime: now,
		Place:     place,
	}
}

// Result is the document describing one processing run, uploaded alongside
// the produced images.
type Result struct {
	// InputURI is the S3 URI of the source frame
	InputURI string `json:"input_uri"`

	// ProcessedAt is the UTC completion timestamp in ISO form
	ProcessedAt string `json:"processed_at"`

	// Config echoes the parameters the run used
	Config ResultConfig `json:"config"`

	// UnwarpedImages maps view name to the uploaded image URI; present
	// only when unwarping was requested
	UnwarpedImages map[string]string `json:"unwarped_images,omitempty"`

	// RotatedImage is the uploaded rotated frame URI; present only when
	// rotation was requested
	RotatedImage string `json:"rotated_image,omitempty"`

	// AnalysisResults maps view name to the parsed LLM analysis; present
	// only when analysis was requested
	AnalysisResults map[string]map[string]interface{} `json:"analysis_results,omitempty"`

	// ResultsURI is the S3 URI of this document once stored
	ResultsURI string `json:"results_uri,omitempty"`
}

// ResultConfig echoes the effective parameters of a processing run.
type ResultConfig struct {
	Unwarp        bool    `json:"unwarp"`
	Rotate        bool    `json:"rotate"`
	Analyze       bool    `json:"analyze"`
	FOV           float64 `json:"fov,omitempty"`
	ViewAngle     float64 `json:"view_angle,omitempty"`
	RotationAngle float64 `json:"rotation_angle,omitempty"`
	Prompt        string  `json:"prompt,omitempty"`
	Model         string  `json:"model,omitempty"`
}
