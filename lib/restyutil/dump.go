// Package restyutil captures http exchanges made through resty for debugging.
package restyutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Dump receives one rendered exchange per response.
type Dump interface {
	Write(id string, contents string) error
}

// DirDump writes every exchange to its own file in a directory.
type DirDump struct {
	directory string
}

func NewDirDump(dir string) (DirDump, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return DirDump{}, err
	}
	return DirDump{directory: dir}, nil
}

func (d DirDump) Write(id string, contents string) error {
	return os.WriteFile(filepath.Join(d.directory, id+".txt"), []byte(contents), 0600)
}

// Capture writes every response of `client` to `out`, ids are `<n>-<method>`.
// Write failures go to `onError` and never fail the request.
func Capture(client *resty.Client, out Dump, onError func(error)) {
	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf(
			"%d-%s",
			atomic.AddUint64(&idcounter, 1),
			strings.ToLower(res.Request.Method),
		)
		err := out.Write(id, FormatExchange(res))
		if err != nil && onError != nil {
			onError(fmt.Errorf("dump %s: %w", id, err))
		}
		return nil
	})
}
