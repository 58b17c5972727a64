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

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Vise.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Vise.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Vise.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd queues a file for compression.
func (c *Client) QueueAdd(path string) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	req := QueueAddRequest{Path: path}
	if err := c.client.Call("Vise.QueueAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue entries optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Vise.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single job.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Vise.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompressAll queues every pending job for compression.
func (c *Client) CompressAll() (*CompressAllResponse, error) {
	var resp CompressAllResponse
	if err := c.client.Call("Vise.CompressAll", CompressAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelAll clears the waiting queue and interrupts the active job.
func (c *Client) CancelAll() (*CancelAllResponse, error) {
	var resp CancelAllResponse
	if err := c.client.Call("Vise.CancelAll", CancelAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueCancel cancels a single job.
func (c *Client) QueueCancel(id string) (*QueueCancelResponse, error) {
	var resp QueueCancelResponse
	req := QueueCancelRequest{ID: id}
	if err := c.client.Call("Vise.QueueCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry re-queues a failed job, or every failed job when id is empty.
func (c *Client) QueueRetry(id string) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	req := QueueRetryRequest{ID: id}
	if err := c.client.Call("Vise.QueueRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes a single job from the queue.
func (c *Client) QueueRemove(id string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	req := QueueRemoveRequest{ID: id}
	if err := c.client.Call("Vise.QueueRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes finished jobs from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Vise.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryList returns finished runs, newest first.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	var resp HistoryListResponse
	req := HistoryListRequest{Limit: limit}
	if err := c.client.Call("Vise.HistoryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryStats returns aggregate ledger totals.
func (c *Client) HistoryStats() (*HistoryStatsResponse, error) {
	var resp HistoryStatsResponse
	if err := c.client.Call("Vise.HistoryStats", HistoryStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryClear empties the finished-run ledger.
func (c *Client) HistoryClear() (*HistoryClearResponse, error) {
	var resp HistoryClearResponse
	if err := c.client.Call("Vise.HistoryClear", HistoryClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Vise.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Vise.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
