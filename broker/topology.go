package broker

import amqp "github.com/rabbitmq/amqp091-go"

const (
	TasksExchange = "tasks_exchange"
	DeadExchange  = "tasks_dlx"

	QueueAgentTasks   = "agent_tasks"
	QueueProcessTasks = "process_tasks"
	QueueSimulation   = "simulation_tasks"
	QueueResults      = "results"
	QueueDeadLetter   = "dead_letter_queue"
)

// routingKeys maps each EntityType's routing key to the queue it binds,
// mirroring the entity/kind split used for dispatch: reasoning work is
// priority-queued, deterministic tool work is split by cost.
var routingKeys = map[string]string{
	"REASONING":            QueueAgentTasks,
	"LIGHT_DETERMINISTIC":  QueueProcessTasks,
	"HEAVY_DETERMINISTIC":  QueueSimulation,
}

// declareTopology declares every exchange, queue, and binding idempotently:
// running it twice against the same broker leaves the same topology in
// place, since every declare/bind call is itself idempotent in AMQP.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(TasksExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(DeadExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}

	dlxArgs := amqp.Table{"x-dead-letter-exchange": DeadExchange}

	agentArgs := amqp.Table{"x-dead-letter-exchange": DeadExchange, "x-max-priority": int32(3)}
	if _, err := ch.QueueDeclare(QueueAgentTasks, true, false, false, false, agentArgs); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueProcessTasks, true, false, false, false, dlxArgs); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueSimulation, true, false, false, false, dlxArgs); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueResults, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueDeadLetter, true, false, false, false, nil); err != nil {
		return err
	}

	for routingKey, queue := range routingKeys {
		if err := ch.QueueBind(queue, routingKey, TasksExchange, false, nil); err != nil {
			return err
		}
	}
	if err := ch.QueueBind(QueueDeadLetter, "", DeadExchange, false, nil); err != nil {
		return err
	}
	return nil
}
