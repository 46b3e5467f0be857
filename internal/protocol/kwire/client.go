package kwire

import (
	"fmt"
	"net"
	"time"
)

// Client speaks the kwire protocol over an established session. It is not
// safe for concurrent use; callers serialize requests.
type Client struct {
	conn net.Conn
}

// NewClient wraps an authenticated session.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying session.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(req *Request) (*Response, error) {
	if err := WriteMessage(c.conn, req); err != nil {
		return nil, err
	}
	var resp Response
	if err := ReadMessage(c.conn, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping verifies the session end to end.
func (c *Client) Ping() error {
	resp, err := c.call(&Request{Op: OpPing})
	if err != nil {
		return err
	}
	if resp.Status != StatusOK {
		return fmt.Errorf("ping failed: %s", resp.Message)
	}
	return nil
}

// Put stores material under name and returns the stored record.
func (c *Client) Put(name, algorithm string, material []byte) (*KeyInfo, error) {
	resp, err := c.call(&Request{Op: OpPut, Name: name, Algorithm: algorithm, Material: material})
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	if len(resp.Keys) != 1 {
		return nil, fmt.Errorf("put returned %d records", len(resp.Keys))
	}
	return &resp.Keys[0], nil
}

// Get retrieves the key stored under name.
func (c *Client) Get(name string) (*KeyInfo, error) {
	resp, err := c.call(&Request{Op: OpGet, Name: name})
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	if len(resp.Keys) != 1 {
		return nil, fmt.Errorf("get returned %d records", len(resp.Keys))
	}
	return &resp.Keys[0], nil
}

// List returns all stored keys.
func (c *Client) List() ([]KeyInfo, error) {
	resp, err := c.call(&Request{Op: OpList})
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Delete removes the key stored under name.
func (c *Client) Delete(name string) error {
	resp, err := c.call(&Request{Op: OpDelete, Name: name})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

// NotFoundError marks a StatusNotFound response.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func statusErr(resp *Response) error {
	switch resp.Status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return &NotFoundError{Message: resp.Message}
	default:
		return fmt.Errorf("request failed: %s", resp.Message)
	}
}

// CreatedAtTime converts the wire timestamp to time.Time.
func (k *KeyInfo) CreatedAtTime() time.Time {
	return time.Unix(k.CreatedAt, 0).UTC()
}
