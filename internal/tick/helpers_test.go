package tick

import "time"

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
