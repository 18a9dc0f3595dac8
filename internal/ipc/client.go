package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon and session status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh rescans for scanners.
func (c *Client) Refresh() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.client.Call(ServiceName+".Refresh", SessionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Open opens the configured scanner.
func (c *Client) Open() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.client.Call(ServiceName+".Open", SessionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseDevice closes the open scanner.
func (c *Client) CloseDevice() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.client.Call(ServiceName+".Close", SessionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start starts a capture action (capture, match, single-enroll, multi-enroll).
func (c *Client) Start(action string) (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call(ServiceName+".Start", StartRequest{Action: action}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop cancels the running capture.
func (c *Client) Stop() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.client.Call(ServiceName+".Stop", SessionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetCaptureType selects the capture type for later actions.
func (c *Client) SetCaptureType(name string) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.client.Call(ServiceName+".SetCaptureType", CaptureTypeRequest{Type: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enroll stores the pending enrollment template.
func (c *Client) Enroll(req EnrollRequest) (*EnrollResponse, error) {
	var resp EnrollResponse
	if err := c.client.Call(ServiceName+".Enroll", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export writes an artifact of the last action.
func (c *Client) Export(req ExportRequest) (*ExportResponse, error) {
	var resp ExportResponse
	if err := c.client.Call(ServiceName+".Export", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Records lists enrolled users, or one user when name is set.
func (c *Client) Records(name string) (*RecordsResponse, error) {
	var resp RecordsResponse
	if err := c.client.Call(ServiceName+".Records", RecordsRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveRecord removes one enrolled user.
func (c *Client) RemoveRecord(name string) (*RemoveRecordResponse, error) {
	var resp RemoveRecordResponse
	if err := c.client.Call(ServiceName+".RemoveRecord", RemoveRecordRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearRecords removes every enrolled user.
func (c *Client) ClearRecords() (*ClearRecordsResponse, error) {
	var resp ClearRecordsResponse
	if err := c.client.Call(ServiceName+".ClearRecords", ClearRecordsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchingLevel sets the matching level when level is non-zero and returns the level in effect.
func (c *Client) MatchingLevel(level int) (*MatchingLevelResponse, error) {
	var resp MatchingLevelResponse
	if err := c.client.Call(ServiceName+".SetMatchingLevel", MatchingLevelRequest{Level: level}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Messages returns message log events.
func (c *Client) Messages(req MessagesRequest) (*MessagesResponse, error) {
	var resp MessagesResponse
	if err := c.client.Call(ServiceName+".Messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
