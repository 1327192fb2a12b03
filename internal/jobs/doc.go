// Package jobs submits files for conversion and tracks the resulting jobs.
//
// A Client sends every request through a Doer, normally the session Manager,
// so credential attachment and 401 handling stay in one place. Jobs are plain
// values: Submit, Poll, and the Watcher each hand back an updated copy and
// never mutate a caller's Job in place.
//
// Failures after a job exists are recorded on the job rather than returned
// past the boundary: a rejected upload ends in StatusSubmissionError, and a
// Watcher that runs out of attempts records services.ErrPollingTimeout in
// Job.Err. Completed and Failed are terminal; polling a terminal job makes no
// request.
package jobs
