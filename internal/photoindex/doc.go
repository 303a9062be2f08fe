// Package photoindex is a small client for the remote photo index
// (PhotoPrism-compatible REST API under /api/v1).
//
// Requests are authenticated with the X-Auth-Token header, paced by a shared
// rate limiter and recorded in the image_labeler_index_* metrics. Non-2xx
// responses become *StatusError values, which match ErrStatus and, for 404,
// ErrNotFound under errors.Is.
package photoindex
