package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"scanmatch/internal/daemon"
	"scanmatch/internal/logging"
	"scanmatch/internal/records"
)

// ServiceName is the RPC service the daemon registers.
const ServiceName = "ScanMatch"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or restart scanmatch daemon"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	snap := status.Session
	view := status.View
	*resp = StatusResponse{
		Running:           status.Running,
		PID:               status.PID,
		State:             view.State,
		Capabilities:      Capabilities(view.Capabilities),
		StatusText:        view.Status,
		ActionText:        view.ActionText,
		Device:            view.Device,
		DeviceCount:       view.DeviceCount,
		DeviceOpen:        snap.DeviceOpen,
		CaptureTypes:      view.CaptureTypes,
		Qualities:         view.Qualities,
		Preview:           view.Preview,
		ActionID:          snap.ActionID,
		ImagesCaptured:    snap.ImagesCaptured,
		ImagesRequired:    snap.ImagesRequired,
		PendingEnrollment: view.Pending,
		MatchingLevel:     status.MatchingLevel,
		Engine:            status.Engine,
		Enrolled:          status.Enrolled,
		DatabaseBytes:     status.DatabaseBytes,
		DatabasePath:      status.DatabasePath,
		LockPath:          status.LockFilePath,
		ExportDir:         status.ExportDir,
	}
	if status.Running {
		resp.State = snap.State.String()
		resp.CaptureType = snap.CaptureType.String()
		if snap.ImagesRequired > 0 {
			resp.Action = snap.Action.String()
		}
	}
	if m := view.LastMatch; m != nil {
		resp.LastMatch = &MatchResult{
			Matched:     m.Matched,
			Name:        m.Name,
			Description: m.Description,
			Score:       m.Score,
			At:          m.At,
		}
	}
	if a := status.LastAction; a != nil {
		resp.LastAction = &ActionSummary{
			ActionID:  a.ActionID,
			Kind:      a.Kind,
			Finished:  a.Finished,
			Images:    a.Images,
			Templates: a.Templates,
			Quality:   a.Quality,
		}
	}
	return nil
}

func (s *service) sessionState(resp *SessionResponse) {
	resp.State = s.daemon.Status(s.ctx).Session.State.String()
}

func (s *service) Refresh(_ SessionRequest, resp *SessionResponse) error {
	s.log().Debug("refresh requested")
	if err := s.daemon.Refresh(s.ctx); err != nil {
		return err
	}
	s.sessionState(resp)
	return nil
}

func (s *service) Open(_ SessionRequest, resp *SessionResponse) error {
	s.log().Debug("open requested")
	if err := s.daemon.Open(s.ctx); err != nil {
		return err
	}
	s.sessionState(resp)
	return nil
}

func (s *service) Close(_ SessionRequest, resp *SessionResponse) error {
	s.log().Debug("close requested")
	if err := s.daemon.CloseDevice(s.ctx); err != nil {
		return err
	}
	s.sessionState(resp)
	return nil
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	s.log().Debug("action start requested", logging.String(logging.FieldAction, req.Action))
	actionID, err := s.daemon.StartAction(s.ctx, req.Action)
	if err != nil {
		return err
	}
	resp.ActionID = actionID
	resp.State = s.daemon.Status(s.ctx).Session.State.String()
	s.log().Info("action started via IPC",
		logging.String(logging.FieldAction, req.Action),
		logging.String(logging.FieldActionID, actionID),
		logging.String(logging.FieldEventType, "action_start"))
	return nil
}

func (s *service) Stop(_ SessionRequest, resp *SessionResponse) error {
	s.log().Debug("capture stop requested")
	if err := s.daemon.StopCapture(s.ctx); err != nil {
		return err
	}
	s.sessionState(resp)
	return nil
}

func (s *service) SetCaptureType(req CaptureTypeRequest, resp *SessionResponse) error {
	if err := s.daemon.SetCaptureType(s.ctx, req.Type); err != nil {
		return err
	}
	s.sessionState(resp)
	return nil
}

func (s *service) Enroll(req EnrollRequest, resp *EnrollResponse) error {
	entry, err := s.daemon.Enroll(s.ctx, req.Name, req.Description, req.Update)
	if err != nil {
		return err
	}
	resp.Record = RecordFromEntry(entry)
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	path, err := s.daemon.Export(s.ctx, req.Format, req.Name)
	if err != nil {
		return err
	}
	resp.Path = path
	return nil
}

func (s *service) Records(req RecordsRequest, resp *RecordsResponse) error {
	if req.Name != "" {
		entry, err := s.daemon.Record(s.ctx, req.Name)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%q: %w", req.Name, records.ErrNotEnrolled)
		}
		resp.Records = []Record{RecordFromEntry(entry)}
	} else {
		entries, err := s.daemon.Records(s.ctx)
		if err != nil {
			return err
		}
		resp.Records = make([]Record, 0, len(entries))
		for _, entry := range entries {
			resp.Records = append(resp.Records, RecordFromEntry(entry))
		}
	}
	resp.DatabaseBytes = s.daemon.Status(s.ctx).DatabaseBytes
	return nil
}

func (s *service) RemoveRecord(req RemoveRecordRequest, resp *RemoveRecordResponse) error {
	if err := s.daemon.RemoveRecord(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Removed = true
	s.log().Info("record removed",
		logging.String("user", req.Name),
		logging.String(logging.FieldEventType, "record_remove"))
	return nil
}

func (s *service) ClearRecords(_ ClearRecordsRequest, resp *ClearRecordsResponse) error {
	s.log().Debug("record clear requested")
	removed, err := s.daemon.ClearRecords(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) SetMatchingLevel(req MatchingLevelRequest, resp *MatchingLevelResponse) error {
	if req.Level != 0 {
		if err := s.daemon.SetMatchingLevel(s.ctx, req.Level); err != nil {
			return err
		}
		s.log().Info("matching level changed",
			logging.Int("level", req.Level),
			logging.String(logging.FieldEventType, "matching_level_set"))
	}
	level, err := s.daemon.MatchingLevel(s.ctx)
	if err != nil {
		return err
	}
	resp.Level = level
	return nil
}

func (s *service) Messages(req MessagesRequest, resp *MessagesResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Messages(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}

// RecordFromEntry converts a stored entry to its wire form.
func RecordFromEntry(entry *records.Entry) Record {
	if entry == nil {
		return Record{}
	}
	rec := Record{
		ID:          entry.ID,
		Name:        entry.Name,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
		ModifiedAt:  entry.ModifiedAt,
	}
	if tpl := entry.Template; tpl != nil {
		rec.Finger = int(tpl.Finger)
		rec.Width = int(tpl.Width)
		rec.Height = int(tpl.Height)
		rec.TemplateBytes = len(tpl.Minutiae)
		rec.TemplateVersion = int(tpl.Version)
	}
	return rec
}
