package xstream

// Field is one name/value pair of a stream entry.
type Field struct {
	Name  string
	Value string
}

// Record is the ordered field list of one stream entry.
type Record []Field

// RecordOf builds a Record from alternating names and values. A trailing
// name without a value gets an empty value.
func RecordOf(kv ...string) Record {
	r := make(Record, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		f := Field{Name: kv[i]}
		if i+1 < len(kv) {
			f.Value = kv[i+1]
		}
		r = append(r, f)
	}
	return r
}

// Get returns the value of the first field called name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Map returns the fields as a map; later duplicates win.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// Event is one stream entry.
type Event struct {
	ID     string
	Record Record
}

// Notification is one pub/sub message. Timestamp is the store clock at
// receipt in milliseconds.
type Notification struct {
	Timestamp string
	Channel   string
	Message   string
}

// KeyEvent is a keyspace notification reduced to the key and the event name.
type KeyEvent struct {
	Timestamp string
	Key       string
	Event     string
}
