package protect

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Camera is the subset of the console's camera record the downloader needs.
type Camera struct {
	Name string `json:"name" yaml:"name"`
	Mac  string `json:"mac" yaml:"mac"`
	ID   string `json:"id" yaml:"id"`
}

// ListCameras fetches every camera known to the console. A null or empty body
// means no cameras.
func (c *Client) ListCameras(ctx context.Context) ([]Camera, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(camerasPath)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, newAPIError("list cameras", resp)
	}

	cams, err := decodeCameras(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return cams, nil
}

func decodeCameras(body []byte) ([]Camera, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	cams := []Camera{}
	if err := json.Unmarshal(body, &cams); err != nil {
		return nil, fmt.Errorf("decode cameras: %w", err)
	}
	return cams, nil
}

// SelectCameras resolves requested names against the camera list. With no
// names every camera is returned in server order. Otherwise each name picks
// the first camera whose name matches exactly (case-sensitive), in request
// order. Names matching nothing are dropped without error.
func SelectCameras(all []Camera, names []string) []Camera {
	if len(names) == 0 {
		return all
	}
	var out []Camera
	for _, name := range names {
		for _, cam := range all {
			if cam.Name == name {
				out = append(out, cam)
				break
			}
		}
	}
	return out
}
