package grpc

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

func (s *GRPCServer) SessionStatus(ctx context.Context, req *api.Empty) (*api.SessionStatus, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	st := s.svc.Sessions.Status(ctx, sess)
	return toStatus(st), nil
}

func (s *GRPCServer) ReportThreat(ctx context.Context, req *api.ReportThreatRequest) (*api.SessionStatus, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	st, err := s.svc.Sessions.ReportThreat(ctx, sess, req.Event, req.Details, req.Severity)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return toStatus(*st), nil
}

func (s *GRPCServer) ListTrustedDevices(ctx context.Context, req *api.ListTrustedDevicesRequest) (*api.ListTrustedDevicesResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.svc.Trust.List(ctx, sess, req.Fingerprint)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.ListTrustedDevicesResponse{Devices: make([]api.TrustedDevice, 0, len(list))}
	for _, d := range list {
		out.Devices = append(out.Devices, api.TrustedDevice{
			ID:          d.ID,
			DeviceName:  d.DeviceName,
			Fingerprint: d.Fingerprint,
			ExpiresAt:   d.ExpiresAt,
			CreatedAt:   d.CreatedAt,
			IsCurrent:   d.IsCurrent,
		})
	}
	return out, nil
}

func (s *GRPCServer) RevokeTrustedDevice(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Trust.Revoke(ctx, sess, req.ID); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) RevokeAllTrustedDevices(ctx context.Context, req *api.Empty) (*api.RevokeAllResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.svc.Trust.RevokeAll(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.RevokeAllResponse{Count: n}, nil
}

func (s *GRPCServer) RecentAudit(ctx context.Context, req *api.Empty) (*api.RecentAuditResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.svc.Audit.Recent(ctx, sess.UserName)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.RecentAuditResponse{Entries: make([]api.AuditEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, api.AuditEntry{Event: e.Event, Metadata: e.Metadata, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

func (s *GRPCServer) RecordEvent(ctx context.Context, req *api.RecordEventRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Audit.RecordClientEvent(ctx, sess, req.Event, req.Metadata); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func toStatus(st models.SessionStatus) *api.SessionStatus {
	return &api.SessionStatus{ThreatLevel: st.ThreatLevel, IsLockedDown: st.IsLockedDown, ExpiresAt: st.ExpiresAt}
}
