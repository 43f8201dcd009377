package models

import "fmt"

// RunStatus is the outcome reported for an extraction run
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
)

// PipelineSpec describes an extraction pipeline to provision
type PipelineSpec struct {
	ExternalID  string
	Name        string
	Description string
	DataSetID   *int64
}

// NewPipelineSpec builds the pipeline spec for a user
func NewPipelineSpec(externalID, username string, dataSetID *int64) PipelineSpec {
	return PipelineSpec{
		ExternalID:  externalID,
		Name:        fmt.Sprintf("Wordfeud Extractor - %s", username),
		Description: fmt.Sprintf("Wordfeud to CDF extractor for %s", username),
		DataSetID:   dataSetID,
	}
}
