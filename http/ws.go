package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"custanalytics/ml"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = 30 * time.Second
	socketReadLimit  = 64 << 10
)

// socketRequest is one manual entry sent over the predict socket.
type socketRequest struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

type socketReply struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	*predictionResponse
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// predictSession serves one socket: every text message is a manual entry answered in order.
type predictSession struct {
	api  *API
	task ml.Task
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func (a *API) handlePredictSocket(w http.ResponseWriter, r *http.Request) {
	task, err := taskFromPath(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}

	session := &predictSession{
		api:  a,
		task: task,
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	a.logger.Debug("predict socket opened", zap.String("task", string(task)), zap.String("remote", r.RemoteAddr))
	go session.writePump()
	session.readPump(r)
}

// writePump 写入泵；退出时关闭连接
func (s *predictSession) writePump() {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.done)
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.api.logger.Debug("predict socket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取泵；返回前关闭 send 并等待写入泵结束
func (s *predictSession) readPump(r *http.Request) {
	defer func() {
		close(s.send)
		<-s.done
		s.api.logger.Debug("predict socket closed", zap.String("task", string(s.task)))
	}()

	s.conn.SetReadLimit(socketReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.api.logger.Info("predict socket read failed", zap.Error(err))
			}
			return
		}

		reply := s.handle(r, message)
		payload, err := json.Marshal(reply)
		if err != nil {
			s.api.logger.Error("encode socket reply", zap.Error(err))
			payload, _ = json.Marshal(socketReply{Type: "error", ID: reply.ID, Error: "encode reply: " + err.Error(), Kind: "internal"})
		}
		select {
		case s.send <- payload:
		case <-s.done:
			return
		}
	}
}

func (s *predictSession) handle(r *http.Request, message []byte) socketReply {
	var req socketRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return errorReply("", malformed("invalid json: %v", err))
	}
	resp, err := s.api.predictEntry(r.Context(), s.task, req.Fields)
	if err != nil {
		return errorReply(req.ID, err)
	}
	return socketReply{Type: "prediction", ID: req.ID, predictionResponse: resp}
}

func errorReply(id string, err error) socketReply {
	body := errorBody(err)
	return socketReply{Type: "error", ID: id, Error: body.Error, Kind: body.Kind}
}
