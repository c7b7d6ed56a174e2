package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Client(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/balance/ok":
			w.Write([]byte(`{"name":"kennedy","balance":20}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"data validation error","fields":{"peer":"peer is a required field"}}`))
		}
	}))
	defer srv.Close()

	t.Log("Given the need to talk to a node.")
	{
		var bal struct {
			Balance uint64 `json:"balance"`
		}
		if err := get(srv.URL+"/v1/balance/ok", &bal); err != nil || bal.Balance != 20 {
			t.Fatalf("\t%s\tShould decode a successful response: %v %+v", failed, err, bal)
		}
		t.Logf("\t%s\tShould decode a successful response.", success)

		err := post(srv.URL+"/v1/peers", struct{}{}, nil)
		if err == nil || !strings.Contains(err.Error(), "peer is a required field") {
			t.Fatalf("\t%s\tShould surface the node's error: %v", failed, err)
		}
		t.Logf("\t%s\tShould surface the node's error.", success)
	}
}
