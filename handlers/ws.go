package handlers

import (
	"net/http"

	"github.com/camden-git/fieldsurvey/realtime"
)

// Events upgrades to a websocket that streams the user's render and survey
// events.
func Events(hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, currentUser(r).ID)
	}
}
