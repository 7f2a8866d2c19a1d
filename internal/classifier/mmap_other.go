//go:build !unix

package classifier

import "errors"

func mapFile(string) (*modelData, error) {
	return nil, errors.New("memory mapping not supported on this platform")
}
