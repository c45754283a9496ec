// Command gate runs the command dispatcher with a demo Greeting command.
//
// Every greeting given on the command line is submitted concurrently; the
// handler publishes "EVENT_<greeting>" on the event bus and returns the
// greeting's length, which is printed once the command completes:
//
//	gate hello world
//	gate --greet hello --limiters limiters.yaml
//	gate --serve
//
// Configuration comes from the environment (and a .env file): GATE_WORKERS,
// GATE_QUEUE_SIZE, GATE_SHUTDOWN_TIMEOUT, GATE_LOGGING_ENABLED, GATE_EVENT_MODE
// (sync or async), GATE_EVENT_WORKERS, GATE_LIMITERS_FILE, LOG_LEVEL and APP_ENV.
// APP_ENV picks the logging preset; LOG_LEVEL and --json override it.
// REDIS_URL switches limiter state to Redis; PG_CONN_URL records every event in
// an event_journal table. A limiter named "greeting" throttles greetings.
package main
