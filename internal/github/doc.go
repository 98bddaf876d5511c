// Package github is a small GitHub REST API client for auditing pull
// requests.
//
// [Client.ResolvePR] turns a pull request into the same [gitctx.FileSet]
// that local resolution produces: changed files fetched at the head commit,
// filtered by the same include, exclude, and size rules. [Client.PostComment]
// publishes an audit summary back to the pull request.
package github
