package chunkfile

import "github.com/hashicorp/go-multierror"

// appendErr accumulates close-path failures without losing earlier ones,
// so a best-effort Close that fails at two different steps reports both.
func appendErr(errs error, err error) error {
	if err == nil {
		return errs
	}
	return multierror.Append(errs, err)
}
