package protect

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type ExportOutcome int

const (
	// ExportOK carries the video stream in ExportResult.Body.
	ExportOK ExportOutcome = iota
	// ExportNoData is a 5xx answer: the console holds no footage for the window.
	ExportNoData
	// ExportFailed is any other non-success status.
	ExportFailed
)

func (o ExportOutcome) String() string {
	switch o {
	case ExportOK:
		return "ok"
	case ExportNoData:
		return "no_data"
	case ExportFailed:
		return "failed"
	}
	return "unknown"
}

// ExportResult is the classified answer to one export request. Body is only
// set for ExportOK and must be closed by the caller.
type ExportResult struct {
	Outcome    ExportOutcome
	StatusCode int
	Message    string
	Body       io.ReadCloser
}

// ExportVideo requests the footage of one camera between start and end. The
// response body is left unread so it can be streamed straight to disk.
// Transport failures are returned as errors; HTTP statuses are classified in
// the result.
func (c *Client) ExportVideo(ctx context.Context, cameraID string, start, end time.Time) (ExportResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "*/*").
		SetQueryParams(map[string]string{
			"camera": cameraID,
			"start":  strconv.FormatInt(start.UTC().UnixMilli(), 10),
			"end":    strconv.FormatInt(end.UTC().UnixMilli(), 10),
		}).
		Get(exportPath)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export %s: %w", cameraID, err)
	}

	body := resp.RawBody()
	code := resp.StatusCode()
	if resp.IsSuccess() {
		return ExportResult{Outcome: ExportOK, StatusCode: code, Body: body}, nil
	}

	msg := drain(body)
	if code >= 500 {
		return ExportResult{Outcome: ExportNoData, StatusCode: code, Message: msg}, nil
	}
	return ExportResult{Outcome: ExportFailed, StatusCode: code, Message: msg}, nil
}

func drain(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer body.Close()
	b, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyLen))
	_, _ = io.Copy(io.Discard, body)
	return strings.TrimSpace(string(b))
}
