// Package download fetches remote artifacts to local files.
//
// Every fetch writes to a sibling temp file and renames it into place, so a
// destination path either holds a complete download or nothing. Transient
// failures are retried with exponential backoff.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Defaults for the retry policy
const (
	DefaultMaxAttempts     = 8
	DefaultInitialInterval = 200 * time.Millisecond
	TempSuffix             = ".tmp"
)

// Client downloads files
type Client struct {
	HTTP            *http.Client
	MaxAttempts     int
	InitialInterval time.Duration
	// Progress receives a progress bar when it is a terminal; nil disables it
	Progress *os.File
}

// New returns a client with the default retry policy and progress on stderr
func New() *Client {
	return &Client{
		HTTP:            &http.Client{Timeout: 10 * time.Minute},
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		Progress:        os.Stderr,
	}
}

// Default is the client used by the package-level helpers
var Default = New()

// Fetch downloads url to dest using the Default client
func Fetch(ctx context.Context, url, dest string) error {
	return Default.Fetch(ctx, url, dest)
}

// FetchVerified downloads url to dest using the Default client and checks its sha256
func FetchVerified(ctx context.Context, url, dest, sha256Hex string) error {
	return Default.FetchVerified(ctx, url, dest, sha256Hex)
}

// Fetch downloads url to dest
func (c *Client) Fetch(ctx context.Context, url, dest string) error {
	logger := logging.GetLogger("download")
	done := logging.LogOperationStart(logger, "download "+url)
	defer done()

	tmp := dest + TempSuffix
	attempt := 0
	op := func() error {
		attempt++
		logger.Debug().Str("url", url).Int("attempt", attempt).Msg("Fetching")
		return c.fetchOnce(ctx, url, tmp)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("url", url).Dur("retryIn", wait).Msg("Download failed, retrying")
	}

	if err := backoff.RetryNotify(op, c.policy(ctx), notify); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, errors.ErrDownload, "failed to download %s", url).
			WithDetail("url", url).
			WithDetail("attempts", attempt)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, errors.ErrIO, "while moving download into %s", dest)
	}
	return nil
}

// FetchVerified downloads url to dest and, when sha256Hex is non-empty,
// checks the digest. A mismatch removes dest.
func (c *Client) FetchVerified(ctx context.Context, url, dest, sha256Hex string) error {
	if err := c.Fetch(ctx, url, dest); err != nil {
		return err
	}
	if sha256Hex == "" {
		return nil
	}
	if err := VerifyFile(dest, sha256Hex); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

// VerifyFile compares the sha256 of path with the expected hex digest
func VerifyFile(path, sha256Hex string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while opening %s", path)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while hashing %s", path)
	}

	got := hex.EncodeToString(h.Sum(nil))
	want := strings.ToLower(strings.TrimSpace(sha256Hex))
	if got != want {
		return errors.Newf(errors.ErrChecksum, "checksum mismatch for %s: expected %s, got %s", filepath.Base(path), want, got).
			WithDetail("expected", want).
			WithDetail("actual", got)
	}
	return nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	initial := c.InitialInterval
	if initial <= 0 {
		initial = DefaultInitialInterval
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// statusError is a non-2xx response
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.status)
}

func (c *Client) fetchOnce(ctx context.Context, url, tmp string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &statusError{code: resp.StatusCode, status: resp.Status}
		if retryableStatus(resp.StatusCode) {
			return serr
		}
		return backoff.Permanent(serr)
	}

	out, err := os.Create(tmp)
	if err != nil {
		return backoff.Permanent(errors.Wrapf(err, errors.ErrIO, "while creating %s", tmp))
	}

	var dst io.Writer = out
	bar := c.startProgress(url, resp.ContentLength)
	if bar != nil {
		dst = io.MultiWriter(out, &barWriter{bar: bar})
	}
	_, copyErr := io.Copy(dst, resp.Body)
	if bar != nil {
		_, _ = bar.Stop()
	}
	closeErr := out.Close()

	if copyErr != nil {
		return classify(ctx, copyErr)
	}
	if closeErr != nil {
		return backoff.Permanent(errors.Wrapf(closeErr, errors.ErrIO, "while writing %s", tmp))
	}
	return nil
}

func (c *Client) startProgress(url string, size int64) *pterm.ProgressbarPrinter {
	if c.Progress == nil || size <= 0 || !isatty.IsTerminal(c.Progress.Fd()) {
		return nil
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(size)).
		WithTitle(filepath.Base(url)).
		WithWriter(c.Progress).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return nil
	}
	return bar
}

type barWriter struct {
	bar *pterm.ProgressbarPrinter
}

func (w *barWriter) Write(p []byte) (int, error) {
	w.bar.Add(len(p))
	return len(p), nil
}

// classify marks transport failures as transient unless the context was
// cancelled.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	if Retryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

// Retryable reports whether a transport error is worth another attempt:
// timeouts, refused or reset connections and truncated bodies.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}
	return stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
