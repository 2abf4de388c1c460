// whatsapp-sim is a local stand-in for the Z-API send-text endpoint.
// Point ZAPI_BASE_URL at it and verification codes show up on stdout
// instead of real phones.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", getenv("ADDR", ":9090"), "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/instances/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/send-text") {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Phone   string `json:"phone"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		fmt.Printf("--- %s -> %s ---\n%s\n\n",
			time.Now().Format("15:04:05"), body.Phone, body.Message)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"zaapId":    fmt.Sprintf("sim_%d", time.Now().UnixNano()),
			"messageId": fmt.Sprintf("msg_%d", time.Now().UnixNano()),
		})
	})

	fmt.Printf("whatsapp-sim listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fatal(err.Error())
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
