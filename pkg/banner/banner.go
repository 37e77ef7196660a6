package banner

import (
	"fmt"

	"bazarchat/pkg/config"
)

const banner = `
██████╗  █████╗ ███████╗ █████╗ ██████╗  ██████╗██╗  ██╗ █████╗ ████████╗
██╔══██╗██╔══██╗╚══███╔╝██╔══██╗██╔══██╗██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██████╔╝███████║  ███╔╝ ███████║██████╔╝██║     ███████║███████║   ██║
██╔══██╗██╔══██║ ███╔╝  ██╔══██║██╔══██╗██║     ██╔══██║██╔══██║   ██║
██████╔╝██║  ██║███████╗██║  ██║██║  ██║╚██████╗██║  ██║██║  ██║   ██║
╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print renders the startup banner with the effective runtime settings
// and a short readiness checklist.
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:   %s\n", source)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/chats                  - Resolve (find or create) a chat with a peer")
	fmt.Println("GET  /v1/chats                  - List the caller's chats")
	fmt.Println("POST /v1/chats/{id}/messages    - Send a message")
	fmt.Println("GET  /v1/chats/{id}/messages    - List chat messages")
	fmt.Println("POST /v1/chats/{id}/read        - Mark counterpart messages read")
	fmt.Println("GET  /v1/chats/{id}/events      - Websocket event stream")

	fmt.Println("\n== Production? =================================================")
	be, fe, ak, sk := 0, 0, 0, 0
	if cfg != nil {
		be = len(cfg.Security.APIKeys.Backend)
		fe = len(cfg.Security.APIKeys.Frontend)
		ak = len(cfg.Security.APIKeys.Admin)
		sk = len(config.GetSigningKeys())
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for browser clients)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	}
	if sk > 0 {
		fmt.Printf("- Signing keys: OK (%d)\n", sk)
	} else {
		fmt.Println("- Signing keys: MISSING (frontend identity cannot be verified)")
	}
	fmt.Println()
}
