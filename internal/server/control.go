//go:build !windows

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkarlsen/gatehouse/internal/supervisor"
)

// Control exposes the operator API over HTTP. It is a read-mostly surface:
// status inspection plus single-service stop. Group shutdown stays
// signal-driven so the control API can never race the coordinator.
//
// Endpoints:
//
//	GET  {basePath}/status        all services, registration order
//	GET  {basePath}/status?name=  one service
//	POST {basePath}/stop?name=    stop one service (grace via ?wait=5s)
type Control struct {
	sup      *supervisor.Supervisor
	basePath string
}

func NewControl(sup *supervisor.Supervisor, basePath string) *Control {
	return &Control{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns a gin-powered http.Handler that can be mounted anywhere.
func (ct *Control) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(ct.basePath)
	group.GET("/status", ct.handleStatus)
	group.POST("/stop", ct.handleStop)
	return g
}

// NewServer starts the control API on addr and returns the server for
// shutdown by the caller.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) *http.Server {
	ct := NewControl(sup, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           ct.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

type stopResp struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome"`
}

func (ct *Control) handleStatus(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusOK, ct.sup.Statuses())
		return
	}
	st, err := ct.sup.Status(name)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (ct *Control) handleStop(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return
	}
	grace := 5 * time.Second
	if waitStr := c.Query("wait"); waitStr != "" {
		d, err := time.ParseDuration(waitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid wait: " + err.Error()})
			return
		}
		grace = d
	}
	out, err := ct.sup.Stop(name, grace)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stopResp{OK: true, Outcome: out.String()})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
