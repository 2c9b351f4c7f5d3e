package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"sync"

	"log/slog"

	"loom/internal/daemon"
	"loom/internal/logging"
	"loom/internal/store"
)

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

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Loom", srv); err != nil {
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
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
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
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockFilePath = status.LockFilePath
	if len(status.Inflight) > 0 {
		resp.Inflight = make([]InflightJob, 0, len(status.Inflight))
		for channelID, stage := range status.Inflight {
			resp.Inflight = append(resp.Inflight, InflightJob{ChannelID: channelID, Stage: stage})
		}
		sort.Slice(resp.Inflight, func(i, j int) bool {
			return resp.Inflight[i].ChannelID < resp.Inflight[j].ChannelID
		})
	}
	return nil
}

func (s *service) Tick(_ TickRequest, resp *TickResponse) error {
	s.logger.Debug("manual tick requested")
	if err := s.daemon.Tick(s.ctx); err != nil {
		resp.Completed = false
		resp.Message = err.Error()
		return nil
	}
	resp.Completed = true
	resp.Message = "tick complete"
	s.logger.Info("manual tick complete",
		logging.String(logging.FieldEventType, "manual_tick"))
	return nil
}

func (s *service) Channels(_ ChannelsRequest, resp *ChannelsResponse) error {
	channels, err := s.daemon.Channels(s.ctx)
	if err != nil {
		return err
	}
	stages := s.daemon.InflightStages()
	resp.Channels = make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		resp.Channels = append(resp.Channels, convertChannel(ch, stages[ch.ID]))
	}
	return nil
}

func (s *service) Runs(req RunsRequest, resp *RunsResponse) error {
	runs, err := s.daemon.Runs(s.ctx, req.ChannelID, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = make([]Run, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		resp.Runs = append(resp.Runs, convertRun(run))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func convertChannel(ch *store.Channel, stage string) Channel {
	return Channel{
		ID:              ch.ID,
		CampaignID:      ch.CampaignID,
		Username:        ch.Username,
		Platform:        ch.Platform,
		Status:          string(ch.Status),
		VideosPerDay:    ch.VideosPerDay,
		Frequency:       string(ch.Frequency),
		LastUploadTime:  ch.LastUploadTime,
		DailyCostCents:  ch.DailyCostCents,
		TotalCostCents:  ch.TotalCostCents,
		DailyLimitCents: ch.DailyLimitCents,
		LastRunAt:       ch.LastRunAt,
		LastRunOutcome:  ch.LastRunOutcome,
		LastRunError:    ch.LastRunError,
		CurrentStage:    stage,
	}
}

func convertRun(run *store.Run) Run {
	return Run{
		ID:           run.ID,
		ChannelID:    run.ChannelID,
		JobID:        run.JobID,
		Outcome:      string(run.Outcome),
		Stage:        run.Stage,
		CostCents:    run.CostCents,
		ArtifactURL:  run.ArtifactURL,
		RemoteURL:    run.RemoteURL,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}
