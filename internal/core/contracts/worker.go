package contracts

import "context"

type AsyncWorker interface {
	// Run starts the consumer loop and blocks until ctx is done.
	Run(ctx context.Context) error
	// ProcessMessage decodes one bus message and queues it for local delivery.
	ProcessMessage(ctx context.Context, raw []byte) error
}
