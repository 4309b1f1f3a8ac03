// internal/handlers/team/team_handler.go
package team

import (
	"net/http"

	"leadcrm-service/internal/pkg/response"
	"leadcrm-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teams *postgres.TeamRepository
}

func NewTeamHandler(teams *postgres.TeamRepository) *TeamHandler {
	return &TeamHandler{teams: teams}
}

// ListTeams returns the team reference list.
func (h *TeamHandler) ListTeams(c *gin.Context) {
	teams, err := h.teams.ListTeams(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "failed to list teams")
		return
	}
	response.Success(c, http.StatusOK, "teams retrieved", teams)
}

// GetAgent resolves an agent by name.
func (h *TeamHandler) GetAgent(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.Error(c, http.StatusBadRequest, "agent name is required", nil)
		return
	}

	agent, err := h.teams.FindAgentByName(c.Request.Context(), name)
	if err != nil {
		response.FromError(c, err, "agent not found")
		return
	}
	response.Success(c, http.StatusOK, "agent retrieved", agent)
}
