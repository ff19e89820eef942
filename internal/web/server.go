// Package web serves the guided walkthrough page, its JSON API and the
// live view over websocket.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/metrics"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/walkthrough"
)

// Options wires a Server. Controller and Tracker are required.
type Options struct {
	Addr       string
	Controller *walkthrough.Controller
	Tracker    *status.Tracker
	Metrics    *metrics.Metrics
	// OnChange is called with the new view after every action.
	OnChange func(walkthrough.View)
}

// Server serves the walkthrough over HTTP.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	ctrl       *walkthrough.Controller
	tracker    *status.Tracker
	hub        *Hub
	onChange   func(walkthrough.View)
}

// New creates a Server. The websocket hub starts immediately; Shutdown stops it.
func New(o Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorf("web: panic on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	r.SetHTMLTemplate(indexTmpl)

	s := &Server{
		router:   r,
		ctrl:     o.Controller,
		tracker:  o.Tracker,
		hub:      NewHub(),
		onChange: o.OnChange,
	}

	r.GET("/", s.handleIndex)
	r.GET("/index.html", s.handleIndex)
	r.GET("/index.json", s.handleStatus)
	r.GET("/ws", s.handleLive)
	if o.Metrics != nil {
		r.GET("/metrics", gin.WrapH(o.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/view", s.handleView)
	api.POST("/step/:index", s.handleStep)
	api.POST("/weight", s.handleWeight)
	api.POST("/timer/:action", s.handleTimer)
	api.POST("/image/:dir", s.handleImage)
	api.POST("/reset", s.handleFullReset)
	api.PATCH("/steps/:id", s.handlePatchStep)

	s.httpServer = &http.Server{
		Addr:              o.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown disconnects live clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast pushes the current view to live clients. The run loop calls
// it on every tick.
func (s *Server) Broadcast() {
	s.hub.Broadcast(Message{Type: "view", Data: s.ctrl.View()})
}

// LiveClients returns the number of connected websocket clients.
func (s *Server) LiveClients() int {
	return s.hub.ClientCount()
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", pageData{View: s.ctrl.View(), Status: s.tracker.Snapshot()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.View())
}

func (s *Server) handleLive(c *gin.Context) {
	s.hub.serve(c, Message{Type: "view", Data: s.ctrl.View()})
}

func (s *Server) handleStep(c *gin.Context) {
	var err error
	switch arg := c.Param("index"); arg {
	case "next":
		err = s.ctrl.Navigate(1)
	case "prev":
		err = s.ctrl.Navigate(-1)
	default:
		idx, convErr := strconv.Atoi(arg)
		if convErr != nil {
			respondError(c, errBadIndex(arg))
			return
		}
		err = s.ctrl.GoTo(idx)
	}
	s.respond(c, err)
}

func (s *Server) handleWeight(c *gin.Context) {
	var req weightRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, recipe.ErrInvalidWeight)
		return
	}
	w, err := recipe.ParseWeight(req.Weight.String())
	if err == nil {
		err = s.ctrl.SetWeight(w)
	}
	s.respond(c, err)
}

func (s *Server) handleTimer(c *gin.Context) {
	var err error
	switch action := c.Param("action"); action {
	case "start":
		err = s.ctrl.Start()
	case "pause":
		err = s.ctrl.Pause()
	case "toggle":
		err = s.ctrl.Toggle()
	case "ack":
		err = s.ctrl.Acknowledge()
	case "reset":
		s.ctrl.ResetTimer()
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown timer action " + strconv.Quote(action)})
		return
	}
	s.respond(c, err)
}

func (s *Server) handleImage(c *gin.Context) {
	switch c.Param("dir") {
	case "next":
		s.ctrl.ShowImage(1)
	case "prev":
		s.ctrl.ShowImage(-1)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown image direction"})
		return
	}
	s.respond(c, nil)
}

func (s *Server) handleFullReset(c *gin.Context) {
	s.ctrl.FullReset()
	s.respond(c, nil)
}

func (s *Server) handlePatchStep(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, errBadIndex(c.Param("id")))
		return
	}
	var p recipe.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, errBadBody(err))
		return
	}
	step, err := s.ctrl.UpdateStep(id, p)
	if err != nil {
		respondError(c, err)
		return
	}
	s.changed()
	c.JSON(http.StatusOK, step)
}

// respond finishes an action. Listeners are notified either way since a
// rejected pause of a due countdown still expires it. Browser forms are
// sent back to the page; API callers get the new view.
func (s *Server) respond(c *gin.Context, err error) {
	if err != nil {
		s.changed()
		respondError(c, err)
		return
	}
	v := s.changed()
	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) changed() walkthrough.View {
	v := s.ctrl.View()
	if s.onChange != nil {
		s.onChange(v)
	}
	s.hub.Broadcast(Message{Type: "view", Data: v})
	return v
}

func wantsHTML(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") &&
		strings.Contains(c.GetHeader("Accept"), "text/html")
}
