package worker

import "fmt"

// NotFoundError is returned by Trigger when the job id isn't registered.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", e.JobID)
}

func shutdownRejection() error {
	return fmt.Errorf("scheduler is shutting down")
}
