package handlers

import (
	"encoding/json"
	"errors"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/models"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/services"
	"nearby-guide/internal/utils"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

func writeData(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"count":   count,
	})
}

// retryAfterSeconds is advertised when the geocoder is rate limited.
const retryAfterSeconds = 60

// writeServiceError maps service and geocoding failures to HTTP responses with
// messages the user can act on.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrClinicNotFound):
		writeError(w, http.StatusNotFound, "Clinic not found")
	case errors.Is(err, services.ErrPlaceNotFound):
		writeError(w, http.StatusNotFound, "Place not found")
	case errors.Is(err, services.ErrNoCoordinates):
		writeError(w, http.StatusUnprocessableEntity, "This place has no map location yet")
	case errors.Is(err, services.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Enter an address or hotel name to search near")
	case errors.Is(err, services.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, services.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrSuperseded):
		writeError(w, http.StatusConflict, "A newer search replaced this one")
	case errors.Is(err, repository.ErrDataLoad):
		writeError(w, http.StatusServiceUnavailable, "Could not load the places list. The previous list is still in use.")
	case geocode.KindOf(err) != 0 || isGeocodeSentinel(err):
		writeGeocodeError(w, err)
	default:
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func isGeocodeSentinel(err error) bool {
	for _, s := range []error{geocode.ErrNotFound, geocode.ErrRateLimited, geocode.ErrNetwork, geocode.ErrParse, geocode.ErrRejected} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func writeGeocodeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, geocode.ErrRateLimited):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	case errors.Is(err, geocode.ErrRejected):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Message: geocode.UserMessage(err),
		Kind:    geocode.KindOf(err).String(),
	})
}

// parseNearbyQuery reads radius, limit, category and tag parameters.
func parseNearbyQuery(r *http.Request) (models.NearbyQuery, error) {
	q := r.URL.Query()
	cats, err := services.ParseCategories(utils.ParseQueryList(q, "category"))
	if err != nil {
		return models.NearbyQuery{}, err
	}
	return models.NearbyQuery{
		RadiusMeters: utils.ParseQueryFloat(q, "radius", 0),
		Limit:        utils.ParseQueryInt(q, "limit", 0),
		Categories:   cats,
		Tags:         utils.ParseQueryList(q, "tag"),
	}, nil
}
