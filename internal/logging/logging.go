package logging

import (
  "os"

  log "github.com/sirupsen/logrus"
)

// Setup points the standard logrus logger at stderr with the given level.
func Setup(level string) error {
  lvl, err := log.ParseLevel(level)
  if err != nil {
    return err
  }
  log.SetOutput(os.Stderr)
  log.SetLevel(lvl)
  log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
  return nil
}
