package tracing

import (
	"context"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ channel.Adapter = (*Adapter)(nil)

// Adapter 为渠道适配器添加链路追踪的装饰器
type Adapter struct {
	adapter channel.Adapter
	typ     domain.ChannelType
	tracer  trace.Tracer
}

func NewAdapter(typ domain.ChannelType, a channel.Adapter) *Adapter {
	return &Adapter{
		adapter: a,
		typ:     typ,
		tracer:  otel.Tracer("push-relay/channel"),
	}
}

func (a *Adapter) Send(ctx context.Context, msg domain.Message, creds domain.Credentials) (domain.SendResult, error) {
	ctx, span := a.tracer.Start(ctx, "Adapter.Send",
		trace.WithAttributes(
			attribute.String("channel.type", a.typ.String()),
			attribute.String("channel.appId", creds.AppID),
			attribute.String("message.type", string(msg.MessageType)),
		))
	defer span.End()

	res, err := a.adapter.Send(ctx, msg, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Bool("send.success", res.Success),
		attribute.String("send.externalId", res.ExternalID),
	)
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	return res, nil
}

func (a *Adapter) Validate(ctx context.Context, creds domain.Credentials) (domain.ValidateResult, error) {
	ctx, span := a.tracer.Start(ctx, "Adapter.Validate",
		trace.WithAttributes(
			attribute.String("channel.type", a.typ.String()),
			attribute.String("channel.appId", creds.AppID),
		))
	defer span.End()

	res, err := a.adapter.Validate(ctx, creds)
	a.end(span, err)
	return res, err
}

func (a *Adapter) CheckFollowStatus(ctx context.Context, creds domain.Credentials, platformUserID string) (domain.FollowStatus, error) {
	ctx, span := a.tracer.Start(ctx, "Adapter.CheckFollowStatus",
		trace.WithAttributes(
			attribute.String("channel.type", a.typ.String()),
			attribute.String("channel.appId", creds.AppID),
		))
	defer span.End()

	res, err := a.adapter.CheckFollowStatus(ctx, creds, platformUserID)
	if err == nil {
		span.SetAttributes(attribute.Bool("user.subscribed", res.Subscribed))
	}
	a.end(span, err)
	return res, err
}

func (a *Adapter) AuthorizeURL(creds domain.Credentials, redirectURI, state string) string {
	return a.adapter.AuthorizeURL(creds, redirectURI, state)
}

func (a *Adapter) ResolveOAuthUser(ctx context.Context, creds domain.Credentials, code string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "Adapter.ResolveOAuthUser",
		trace.WithAttributes(attribute.String("channel.type", a.typ.String())))
	defer span.End()

	res, err := a.adapter.ResolveOAuthUser(ctx, creds, code)
	a.end(span, err)
	return res, err
}

func (a *Adapter) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
