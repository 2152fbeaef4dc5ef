package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/chainaide/handlers/middleware"
	"github.com/ethpandaops/chainaide/utils"
)

func NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.APIErrorResponse(w, http.StatusNotFound, "ERROR: not found")
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(&healthResponse{
		Status:  "OK",
		Version: utils.GetBuildVersion(),
	})
	if err != nil {
		logrus.Errorf("error serializing health response: %v", err)
	}
}
