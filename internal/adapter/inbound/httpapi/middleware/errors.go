package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/jonny/switchyard/pkg/apierror"
)

func writeError(w http.ResponseWriter, apiErr *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	_ = json.NewEncoder(w).Encode(apiErr)
}
