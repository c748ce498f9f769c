package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/crzliang/gzbot/internal/broadcast"
	"github.com/crzliang/gzbot/internal/handler/health"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type rankingsQuery struct {
	Prefix string `query:"prefix" description:"Only teams with a member id starting with this prefix; ranks are recomputed within them."`
}

type deliveriesQuery struct {
	Limit int `query:"limit" minimum:"1" maximum:"200" default:"20"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "gzbot API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Read-only view of the GZCTF notice broadcaster and leaderboard.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the status of every configured backend: postgres, redis, journal.")
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /onebot/v11/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/onebot/v11/ws")
	getWS.SetSummary("OneBot v11 reverse WebSocket")
	getWS.SetDescription("Bot clients connect here with X-Self-ID and, when configured, a Bearer access token.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusUnauthorized),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// GET /api/challenges
	getChallenges, _ := r.NewOperationContext(http.MethodGet, "/api/challenges")
	getChallenges.SetSummary("List challenges")
	getChallenges.SetDescription("Challenges of the watched game, newest first.")
	getChallenges.AddRespStructure(ChallengesResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getChallenges.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getChallenges.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getChallenges)

	// GET /api/rankings
	getRankings, _ := r.NewOperationContext(http.MethodGet, "/api/rankings")
	getRankings.SetSummary("Leaderboard")
	getRankings.SetDescription("Teams ordered by score, then earliest last solve, then name.")
	getRankings.AddReqStructure(rankingsQuery{})
	getRankings.AddRespStructure(RankingsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRankings.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getRankings.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getRankings)

	// POST /api/notices/preview
	postPreview, _ := r.NewOperationContext(http.MethodPost, "/api/notices/preview")
	postPreview.SetSummary("Preview a notice")
	postPreview.SetDescription("Renders a notice the way it would be broadcast, without sending it.")
	postPreview.AddReqStructure(PreviewRequest{})
	postPreview.AddRespStructure(PreviewResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postPreview.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postPreview.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postPreview)

	// GET /api/broadcast
	getBroadcast, _ := r.NewOperationContext(http.MethodGet, "/api/broadcast")
	getBroadcast.SetSummary("Broadcast status")
	getBroadcast.SetDescription("Toggle state, watermark, dedup size and connected bot accounts.")
	getBroadcast.AddRespStructure(broadcast.Status{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getBroadcast)

	// GET /api/deliveries
	getDeliveries, _ := r.NewOperationContext(http.MethodGet, "/api/deliveries")
	getDeliveries.SetSummary("Recent deliveries")
	getDeliveries.SetDescription("Most recent entries of the delivery journal, newest first.")
	getDeliveries.AddReqStructure(deliveriesQuery{})
	getDeliveries.AddRespStructure(DeliveriesResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getDeliveries.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getDeliveries.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getDeliveries)

	// GET /api/deliveries/stream
	getStream, _ := r.NewOperationContext(http.MethodGet, "/api/deliveries/stream")
	getStream.SetSummary("Delivery event stream")
	getStream.SetDescription("Server-Sent Events stream with one \"delivery\" event per processed notice.")
	getStream.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getStream)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
