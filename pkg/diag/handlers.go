package diag

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"avaneesh/pnio-go/pkg/channel"
	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/pnio"
	"avaneesh/pnio-go/pkg/types"
)

type arView struct {
	UUID           string    `json:"uuid"`
	InputFrameID   uint16    `json:"input_frame_id"`
	OutputFrameID  uint16    `json:"output_frame_id"`
	CycleTime      string    `json:"cycle_time"`
	WatchdogFactor uint16    `json:"watchdog_factor"`
	InputLength    uint16    `json:"input_length"`
	OutputLength   uint16    `json:"output_length"`
	RemoteMAC      types.MAC `json:"remote_mac"`
}

type sessionView struct {
	cyclic.Session
	AR arView `json:"ar"`
}

func viewOf(s cyclic.Session) sessionView {
	return sessionView{
		Session: s,
		AR: arView{
			UUID:           s.AR.UUID.String(),
			InputFrameID:   s.AR.InputFrameID,
			OutputFrameID:  s.AR.OutputFrameID,
			CycleTime:      s.AR.CycleTime.String(),
			WatchdogFactor: s.AR.WatchdogFactor,
			InputLength:    s.AR.InputLength,
			OutputLength:   s.AR.OutputLength,
			RemoteMAC:      s.AR.RemoteMAC,
		},
	}
}

type channelView struct {
	State     string                 `json:"state"`
	Frames    channel.StatsSnapshot  `json:"frames"`
	Transport channel.TransportStats `json:"transport"`
}

type statsView struct {
	pnio.DeviceStatistics
	QueueDropped uint64       `json:"queue_dropped"`
	Channel      *channelView `json:"channel,omitempty"`
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), RequestTimeout)
}

// GET /health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// GET /api/v1/identity
func (s *Server) getIdentity(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	id, err := s.src.Identity(ctx)
	if err != nil {
		deviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

// GET /api/v1/dcp
func (s *Server) getDCP(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	st, err := s.src.DCPState(ctx)
	if err != nil {
		deviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":      st.String(),
		"statistics": s.src.Statistics().DCP,
	})
}

// GET /api/v1/sessions
func (s *Server) listSessions(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	sessions, err := s.src.Sessions(ctx)
	if err != nil {
		deviceError(c, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, viewOf(sess))
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/v1/sessions/:handle
func (s *Server) getSession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	sessions, err := s.src.Sessions(ctx)
	if err != nil {
		deviceError(c, err)
		return
	}
	want := c.Param("handle")
	for _, sess := range sessions {
		if sess.Handle.String() == want {
			c.JSON(http.StatusOK, viewOf(sess))
			return
		}
	}
	c.JSON(http.StatusNotFound, errorResponse{Code: "SESSION_404", Message: "no session " + want})
}

// GET /api/v1/stats
func (s *Server) getStats(c *gin.Context) {
	v := statsView{
		DeviceStatistics: s.src.Statistics(),
		QueueDropped:     s.src.Dropped(),
	}
	if s.ch != nil {
		v.Channel = &channelView{
			State:     s.ch.State().String(),
			Frames:    s.ch.Statistics(),
			Transport: s.ch.PhysicalStatistics(),
		}
	}
	c.JSON(http.StatusOK, v)
}
