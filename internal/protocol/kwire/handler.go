package kwire

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/pkg/keystore"
)

// ServiceHandler serves kwire sessions against a keystore. It implements
// the discovery layer's Handler interface: one call per authenticated
// session, requests processed in order until the peer goes away.
type ServiceHandler struct {
	Store *keystore.Store
}

// Handle serves one session. It owns conn and closes it on return.
func (h *ServiceHandler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		var req Request
		if err := ReadMessage(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("session read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		resp := h.dispatch(ctx, &req)

		if err := WriteMessage(conn, resp); err != nil {
			logger.Debug("session write failed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (h *ServiceHandler) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Op {
	case OpPing:
		return &Response{Status: StatusOK}

	case OpPut:
		key, err := h.Store.Put(ctx, req.Name, req.Algorithm, req.Material)
		if err != nil {
			return errResponse(err)
		}
		return &Response{Status: StatusOK, Keys: []KeyInfo{toKeyInfo(key, true)}}

	case OpGet:
		key, err := h.Store.Get(ctx, req.Name)
		if err != nil {
			return errResponse(err)
		}
		return &Response{Status: StatusOK, Keys: []KeyInfo{toKeyInfo(key, true)}}

	case OpList:
		keys, err := h.Store.List(ctx)
		if err != nil {
			return errResponse(err)
		}
		infos := make([]KeyInfo, 0, len(keys))
		for _, key := range keys {
			// Listings omit material; it only travels on explicit GET.
			infos = append(infos, toKeyInfo(key, false))
		}
		return &Response{Status: StatusOK, Keys: infos}

	case OpDelete:
		if err := h.Store.Delete(ctx, req.Name); err != nil {
			return errResponse(err)
		}
		return &Response{Status: StatusOK}

	default:
		return &Response{Status: StatusInvalid, Message: "unknown procedure"}
	}
}

func toKeyInfo(key *keystore.Key, includeMaterial bool) KeyInfo {
	info := KeyInfo{
		ID:        key.ID,
		Name:      key.Name,
		Algorithm: key.Algorithm,
		CreatedAt: key.CreatedAt.Unix(),
	}
	if includeMaterial {
		info.Material = key.Material
	}
	return info
}

func errResponse(err error) *Response {
	var se *keystore.StoreError
	if errors.As(err, &se) {
		switch se.Code {
		case keystore.ErrNotFound:
			return &Response{Status: StatusNotFound, Message: se.Message}
		case keystore.ErrInvalidName:
			return &Response{Status: StatusInvalid, Message: se.Message}
		}
	}
	return &Response{Status: StatusError, Message: err.Error()}
}
