// Package metaflow resolves download requests against a Metaflow deployment.
//
// Run and artifact metadata come from the metadata service REST API
// (Client). Artifact values live in the datastore as gzip-compressed
// pickles and are read through a BlobOpener, normally an objstore.Router.
//
// Resolution follows the Metaflow client semantics: "latest" means the most
// recent run whose end step recorded _success, and artifacts are read from
// the end step's latest attempt.
package metaflow
