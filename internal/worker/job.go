package worker

import "fmt"

// PageJob is one unit of work on the queue: classify a single page of a
// local PDF into labeled corpus samples.
type PageJob struct {
	JobID      string `json:"job_id"`
	Document   string `json:"document"`
	PDFPath    string `json:"pdf_path"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Attempt    int    `json:"attempt"`
}

// IdemKey identifies a page across redeliveries.
func (j PageJob) IdemKey() string {
	return fmt.Sprintf("%s:%d", j.JobID, j.Page)
}
