// Package scan 在文件入库前做病毒扫描。
package scan

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected is returned when the scanner flags the stream.
var ErrInfected = errors.New("scan: malicious file detected")

type Scanner interface {
	Scan(r io.Reader) error
}

// New 返回 clamd 扫描器；地址为空时返回不做任何检查的扫描器。
func New(addr string) Scanner {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Nop{}
	}
	return &Clamd{client: clamd.NewClamd(addr)}
}

// Clamd streams files to a clamd daemon over INSTREAM.
type Clamd struct {
	client *clamd.Clamd
}

func (c *Clamd) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan stream: %w", err)
	}

	var infected error
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			infected = fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			if infected == nil {
				infected = fmt.Errorf("clamd: %s %s", result.Status, result.Description)
			}
		}
	}
	return infected
}

// Nop accepts every stream.
type Nop struct{}

func (Nop) Scan(io.Reader) error { return nil }
