package tutorialapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

// processedStep is the reply of /process_image: the step, updated, with the corner
// points of the detected target. Location is "" when the target was not found.
type processedStep struct {
	domain.Step
	Location json.RawMessage `json:"location"`
}

// ProcessImage uploads a capture and asks the service where step's target is.
// It returns the updated step and the viewport-relative corner points, none when the
// target is not visible.
func (c *Client) ProcessImage(ctx context.Context, step domain.Step, capture domain.Capture, vp domain.Viewport) (domain.Step, []domain.Point, error) {
	stepData, err := json.Marshal(step.Unresolved())
	if err != nil {
		return domain.Step{}, nil, fmt.Errorf("marshal step: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	format := capture.Format
	if format == "" {
		format = "png"
	}
	part, err := w.CreateFormFile("image", "capture."+format)
	if err != nil {
		return domain.Step{}, nil, err
	}
	if _, err := part.Write(capture.Image); err != nil {
		return domain.Step{}, nil, err
	}
	fields := map[string]string{
		"step_data":       string(stepData),
		"viewport_width":  strconv.Itoa(vp.Width),
		"viewport_height": strconv.Itoa(vp.Height),
	}
	for _, name := range []string{"step_data", "viewport_width", "viewport_height"} {
		if err := w.WriteField(name, fields[name]); err != nil {
			return domain.Step{}, nil, err
		}
	}
	if err := w.Close(); err != nil {
		return domain.Step{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process_image", &body)
	if err != nil {
		return domain.Step{}, nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var reply processedStep
	if err := c.do(req, &reply); err != nil {
		return domain.Step{}, nil, fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	points, err := decodeLocation(reply.Location)
	if err != nil {
		return domain.Step{}, nil, fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}
	return reply.Step, points, nil
}

// DetectRegion implements ports.RegionDetector.
func (c *Client) DetectRegion(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
	step, points, err := c.ProcessImage(ctx, req.Step, req.Capture, req.Viewport)
	if err != nil {
		return ports.RegionResult{}, err
	}
	c.logger.Debug("Region detected", "index", req.Step.Index, "points", len(points))
	return ports.RegionResult{Step: step, Points: points}, nil
}

func decodeLocation(raw json.RawMessage) ([]domain.Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("malformed location: %w", err)
		}
		if s != "" {
			return nil, fmt.Errorf("malformed location %q", s)
		}
		return nil, nil
	}
	var points []domain.Point
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("malformed location: %w", err)
	}
	return points, nil
}
