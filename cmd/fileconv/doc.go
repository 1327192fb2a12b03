// Command fileconv is the command-line client for the file conversion
// service. It logs in, submits files, follows their conversion, and downloads
// the results.
package main
