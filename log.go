// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import "github.com/sirupsen/logrus"

// Logger is the structured-event facility: events fire at
// pool warm-up/replacement, worker validation failure, batch start/finish,
// per-document failure, and timeout firing, each carrying a typed field
// map. Defaults to logrus.StandardLogger(); callers may inject their own.
var Logger = logrus.StandardLogger()

func logPoolWarmup(capacity int) {
	Logger.WithFields(logrus.Fields{"capacity": capacity}).Info("pool warm-up")
}

func logPoolReplacement(workerID int) {
	Logger.WithFields(logrus.Fields{"worker_id": workerID}).Info("pool worker replaced")
}

func logValidationFailure(workerID int) {
	Logger.WithFields(logrus.Fields{"worker_id": workerID}).Warn("worker validation failed")
}

func logBatchStart(size int) {
	Logger.WithFields(logrus.Fields{"batch_size": size}).Info("batch start")
}

func logBatchFinish(size int, err error) {
	fields := logrus.Fields{"batch_size": size}
	if err != nil {
		fields["error"] = err.Error()
		Logger.WithFields(fields).Warn("batch finish")
		return
	}
	Logger.WithFields(fields).Info("batch finish")
}

func logDocumentFailure(index int, err error) {
	Logger.WithFields(logrus.Fields{"index": index, "error": err.Error()}).Warn("document failed")
}

func logTimeout(kind Kind, index int) {
	Logger.WithFields(logrus.Fields{"kind": kind.tag(), "index": index}).Warn("timeout fired")
}
