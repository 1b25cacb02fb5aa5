package main

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ocsbridge/internal/ingest"
	"ocsbridge/internal/models"
)

// Client talks to an ocsbridge server.
type Client struct {
	http *resty.Client
}

func NewClient(serverURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(serverURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetHeader("User-Agent", "ocsbridge-agent/"+version)
	return &Client{http: c}
}

// Health calls GET /health.
func (c *Client) Health() (map[string]string, error) {
	var out map[string]string
	resp, err := c.http.R().SetResult(&out).SetError(&out).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return out, fmt.Errorf("server unhealthy (%d): %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

// SendXML posts an OCS document to /ocsinventory, optionally compressed,
// and returns the decoded reply.
func (c *Client) SendXML(doc []byte, compression string) (*ingest.Reply, int, error) {
	body, contentType, err := encodeBody(doc, compression)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.R().
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post("/ocsinventory")
	if err != nil {
		return nil, 0, fmt.Errorf("submission failed: %w", err)
	}

	var reply ingest.Reply
	if err := xml.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, resp.StatusCode(), fmt.Errorf("unexpected reply (%d): %s", resp.StatusCode(), resp.String())
	}
	return &reply, resp.StatusCode(), nil
}

// SendJSON posts a record to /api/ingest and returns the acknowledgement.
func (c *Client) SendJSON(payload []byte) (map[string]string, error) {
	var ack map[string]string
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&ack).
		Post("/api/ingest")
	if err != nil {
		return nil, fmt.Errorf("submission failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("server rejected submission (%d): %s", resp.StatusCode(), resp.String())
	}
	return ack, nil
}

// Devices calls GET /api/devices.
func (c *Client) Devices(limit, offset int) ([]models.Device, error) {
	var devices []models.Device
	resp, err := c.http.R().
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetQueryParam("offset", fmt.Sprint(offset)).
		SetResult(&devices).
		Get("/api/devices")
	if err != nil {
		return nil, fmt.Errorf("list devices failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("list devices (%d): %s", resp.StatusCode(), resp.String())
	}
	return devices, nil
}

// Device calls GET /api/devices/{device_id}.
func (c *Client) Device(deviceID string) (*models.DeviceDetail, error) {
	var detail models.DeviceDetail
	resp, err := c.http.R().
		SetPathParam("device_id", deviceID).
		SetResult(&detail).
		Get("/api/devices/{device_id}")
	if err != nil {
		return nil, fmt.Errorf("get device failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("get device (%d): %s", resp.StatusCode(), resp.String())
	}
	return &detail, nil
}

// encodeBody compresses doc and picks a content type the server recognises.
func encodeBody(doc []byte, compression string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch compression {
	case "", "none":
		return doc, "application/xml", nil
	case "zlib":
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(doc); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/x-compress-zlib", nil
	case "gzip":
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(doc); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/x-gzip", nil
	default:
		return nil, "", fmt.Errorf("unknown compression %q (want zlib, gzip or none)", compression)
	}
}

func prettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(out)
}
