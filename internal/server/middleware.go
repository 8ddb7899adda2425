package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"github.com/gin-gonic/gin"
)

const agentContextKey = "datamart.agent"

// AgentRequired resolves the calling agent from the X-Agent-ID header set by
// the API gateway after authentication.
func (s *Server) AgentRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Agent-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		agent, err := s.agentRepo.FindByID(c.Request.Context(), s.db, id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if agent == nil || !agent.Active {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(agentContextKey, agent)
		c.Next()
	}
}

func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := currentAgent(c)
		if agent == nil || agent.Type != agentdomain.TypeOperator {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentAgent(c *gin.Context) *agentdomain.Agent {
	value, ok := c.Get(agentContextKey)
	if !ok {
		return nil
	}
	agent, _ := value.(*agentdomain.Agent)
	return agent
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}
