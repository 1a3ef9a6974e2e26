package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mixdeck/engine"
	"mixdeck/mixplan"
)

// statusResponse is the wire view of the engine state; positions are
// integer milliseconds like every other wire format here.
type statusResponse struct {
	Loaded      bool  `json:"loaded"`
	Playing     bool  `json:"playing"`
	PositionMs  int64 `json:"positionMs"`
	DurationMs  int64 `json:"durationMs"`
	ActiveDecks int   `json:"activeDecks"`
}

// GetStatus reports the live session state
func (s *Server) GetStatus(c *gin.Context) {
	st := s.eng.State()
	c.JSON(http.StatusOK, statusResponse{
		Loaded:      st.Loaded,
		Playing:     st.Playing,
		PositionMs:  st.Position.Milliseconds(),
		DurationMs:  st.Duration.Milliseconds(),
		ActiveDecks: st.ActiveDecks,
	})
}

func (s *Server) Play(c *gin.Context) {
	if err := s.eng.Play(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": true})
}

func (s *Server) Pause(c *gin.Context) {
	if err := s.eng.Pause(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": false})
}

func (s *Server) Stop(c *gin.Context) {
	if err := s.eng.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": false, "positionMs": 0})
}

func (s *Server) Seek(c *gin.Context) {
	var req struct {
		PositionMs int64 `json:"positionMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pos := time.Duration(req.PositionMs) * time.Millisecond
	if err := s.eng.Seek(pos); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positionMs": s.eng.Position().Milliseconds()})
}

func (s *Server) SetGain(c *gin.Context) {
	track, err := parseTrack(c.Param("track"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req struct {
		Gain *float64 `json:"gain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Gain == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gain is required"})
		return
	}
	s.eng.SetTrackGain(track, *req.Gain)
	c.JSON(http.StatusOK, gin.H{"track": track.String(), "gain": *req.Gain})
}

func (s *Server) SetMute(c *gin.Context) {
	track, err := parseTrack(c.Param("track"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req struct {
		Muted *bool `json:"muted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Muted == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "muted is required"})
		return
	}
	s.eng.SetMute(track, *req.Muted)
	c.JSON(http.StatusOK, gin.H{"track": track.String(), "muted": *req.Muted})
}

func (s *Server) SetSolo(c *gin.Context) {
	track, err := parseTrack(c.Param("track"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req struct {
		Solo *bool `json:"solo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Solo == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "solo is required"})
		return
	}
	s.eng.SetSolo(track, *req.Solo)
	c.JSON(http.StatusOK, gin.H{"track": track.String(), "solo": *req.Solo})
}

func (s *Server) SetDucking(c *gin.Context) {
	var req *mixplan.Ducking
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req == nil {
		s.eng.SetDucking(nil)
		c.JSON(http.StatusOK, gin.H{"ducking": nil})
		return
	}
	d := &engine.Ducking{
		Enabled:  req.Enabled,
		AmountDB: req.AmountDB,
		Attack:   time.Duration(req.AttackMs) * time.Millisecond,
		Release:  time.Duration(req.ReleaseMs) * time.Millisecond,
	}
	s.eng.SetDucking(d)
	c.JSON(http.StatusOK, gin.H{"ducking": req})
}

// GetPlan exports the live session as a mixdown plan
func (s *Server) GetPlan(c *gin.Context) {
	outExt := c.DefaultQuery("ext", "m4a")
	plan, err := s.eng.Plan(mixplan.FX{}, outExt)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// LoadPlan reseeds the session from mixdown plan parts, keeping the
// loaded base recording
func (s *Server) LoadPlan(c *gin.Context) {
	var req struct {
		Segments   []mixplan.Segment  `json:"segments"`
		TrackGains mixplan.TrackGains `json:"trackGains"`
		Ducking    *mixplan.Ducking   `json:"ducking"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.eng.LoadFromPlan(req.Segments, req.TrackGains, req.Ducking); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": true})
}

func parseTrack(name string) (engine.Track, error) {
	name = strings.ToLower(name)
	if name == "main" {
		return engine.TrackMain, nil
	}
	if n, ok := strings.CutPrefix(name, "deck"); ok {
		d, err := strconv.Atoi(n)
		if err == nil && engine.DeckNumber(d).Valid() {
			return engine.DeckTrack(engine.DeckNumber(d)), nil
		}
	}
	return engine.TrackMain, fmt.Errorf("unknown track %q", name)
}
