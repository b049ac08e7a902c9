package messaging

import (
	"context"

	"github.com/alfredmq/alfred-go/interceptors"
)

// DiscoveryInterceptor answers module.info.request deliveries on behalf of a
// module and keeps them away from the application
type DiscoveryInterceptor struct {
	conn *Connection
	info ModuleInfo
}

// NewDiscoveryInterceptor creates a discovery interceptor replying through conn
func NewDiscoveryInterceptor(conn *Connection, info ModuleInfo) *DiscoveryInterceptor {
	return &DiscoveryInterceptor{conn: conn, info: info}
}

// Intercept implements interceptors.Interceptor
func (i *DiscoveryInterceptor) Intercept(ctx context.Context, d interceptors.Delivery, next interceptors.MessageHandler) error {
	handled, err := i.conn.ManageModuleInfoRequest(ctx, d.Topic, i.info.Name(), i.info.Capabilities())
	if err != nil {
		return err
	}
	if handled {
		return nil
	}
	return next.Handle(ctx, d)
}

// Name implements interceptors.Interceptor
func (i *DiscoveryInterceptor) Name() string {
	return "DiscoveryInterceptor"
}
