package worker

import (
	"github.com/hibiken/asynq"

	"github.com/foxden/sourcewatch/internal/queue"
)

// NewServer builds an asynq.Server and its routed mux for the given handlers,
// using workerCount concurrent goroutines per the configured worker pool
// size.
func NewServer(redisOpt asynq.RedisConnOpt, queueName string, workerCount int, h *Handlers) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: workerCount,
		Queues: map[string]int{
			queueName: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeChannelUpdate, h.HandleChannelUpdate)
	mux.HandleFunc(queue.TypeChannelEdit, h.HandleChannelEdit)
	mux.HandleFunc(queue.TypeGroupPhoto, h.HandleGroupPhoto)
	mux.HandleFunc(queue.TypeGroupSource, h.HandleGroupSource)

	return srv, mux
}
