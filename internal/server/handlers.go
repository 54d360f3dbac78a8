package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
)

// NotifyRequest is the body of POST /v1/notify.
type NotifyRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Concurrent *bool  `json:"concurrent,omitempty"`
}

// NotifyResponse is returned when every channel accepted the message.
type NotifyResponse struct {
	Dispatched int `json:"dispatched"`
}

// Failure describes one channel that rejected the message.
type Failure struct {
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// ErrorResponse is returned for rejected requests and failed dispatches.
type ErrorResponse struct {
	Error    string    `json:"error"`
	Failures []Failure `json:"failures,omitempty"`
}

func (s *Server) notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	concurrent := s.concurrent
	if req.Concurrent != nil {
		concurrent = *req.Concurrent
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var err error
	if concurrent {
		err = s.pub.PublishConcurrently(ctx, req.Content, req.Title)
	} else {
		err = s.pub.Publish(ctx, req.Content, req.Title)
	}
	if err != nil {
		s.log.Warn("notify request failed", "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Failures: failures(err)})
		return
	}
	c.JSON(http.StatusOK, NotifyResponse{Dispatched: s.pub.Len()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"channels": s.pub.Names(),
	})
}

func failures(err error) []Failure {
	var de *nerrors.DispatchError
	if errors.As(err, &de) {
		out := make([]Failure, 0, len(de.Failures))
		for _, f := range de.Failures {
			out = append(out, Failure{Channel: f.Channel, Error: f.Err.Error()})
		}
		return out
	}
	return []Failure{{Channel: nerrors.GetErrorChannel(err), Error: err.Error()}}
}
