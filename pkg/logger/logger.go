package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

var std = log.New(os.Stdout, "", 0)

// Init resets the logger to stdout. Called once at process start and from
// test setup.
func Init() {
	std = log.New(os.Stdout, "", 0)
}

func emit(level, event string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
	}
	for key, value := range fields {
		entry[key] = value
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		std.Printf(`{"level":"error","event":"log_marshal_failed","source_event":%q}`, event)
		return
	}
	std.Print(string(encoded))
}

func Info(event string, fields map[string]interface{}) {
	emit("info", event, fields)
}

func Warn(event string, fields map[string]interface{}) {
	emit("warn", event, fields)
}

func Error(event string, fields map[string]interface{}) {
	emit("error", event, fields)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	merged := map[string]interface{}{"user_id": userID}
	for key, value := range fields {
		merged[key] = value
	}
	emit("info", event, merged)
}
