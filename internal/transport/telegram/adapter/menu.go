package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

// Telegram caps setMyCommands at 100 entries with 256-char descriptions.
const (
	maxMenuCommands = 100
	maxMenuDescLen  = 256
)

// UpdateMenuCommands replaces the bot's global command menu (setMyCommands).
// The network call is skipped when the command list has not changed since
// the last successful update.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	sum := menuFingerprint(cmds)
	if sum == a.menuHash {
		return nil
	}

	body, count, err := menuPayload(cmds)
	if err != nil {
		return err
	}
	if err := a.callAPI(ctx, "setMyCommands", body); err != nil {
		return err
	}

	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", count))
	return nil
}

func menuFingerprint(cmds []kit.BotCommand) uint64 {
	h := fnv.New64a()
	for _, c := range cmds {
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

type menuCmd struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

func menuPayload(cmds []kit.BotCommand) ([]byte, int, error) {
	list := make([]menuCmd, 0, min(len(cmds), maxMenuCommands))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		if len(list) == maxMenuCommands {
			break
		}
		list = append(list, menuCmd{Command: c.Command, Description: menuDesc(c)})
	}
	b, err := json.Marshal(map[string][]menuCmd{"commands": list})
	return b, len(list), err
}

// menuDesc falls back to the command name and clips to the API limit.
func menuDesc(c kit.BotCommand) string {
	d := c.Description
	if d == "" {
		d = c.Command
	}
	if len(d) > maxMenuDescLen {
		d = d[:maxMenuDescLen]
	}
	return d
}

// callAPI posts one JSON body to a Bot API method outside telebot, for the
// few calls that need context support.
func (a *Adapter) callAPI(ctx context.Context, method string, body []byte) error {
	url := "https://api.telegram.org/bot" + strings.TrimSpace(a.cfg.Token) + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.http
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return apiStatus(method, resp)
}

// apiStatus turns a Bot API response into an error, reading the ok flag
// and description out of the body.
func apiStatus(method string, resp *http.Response) error {
	var out struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode/100 == 2 && out.OK {
		return nil
	}
	if out.Description != "" {
		return fmt.Errorf("telegram %s failed: %s (code=%d http=%d)", method, out.Description, out.ErrorCode, resp.StatusCode)
	}
	return fmt.Errorf("telegram %s failed: http=%d", method, resp.StatusCode)
}
