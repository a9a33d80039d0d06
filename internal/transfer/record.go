package transfer

// FieldsPerRecord is the stride of the flat record encoding: storage
// address, four key words, file name.
const FieldsPerRecord = 2 + KeyWords

// Record is one transfer as seen by its recipient.
type Record struct {
	Sender         string
	StorageAddress string
	Key            Key
	FileName       string
}

// Fields renders r as one field group.
func (r Record) Fields() []string {
	words := r.Key.Words()
	out := make([]string, 0, FieldsPerRecord)
	out = append(out, r.StorageAddress)
	out = append(out, words[:]...)
	return append(out, r.FileName)
}

// FlattenRecords emits the field groups of records followed by an all-empty
// sentinel group.
func FlattenRecords(records []Record) []string {
	out := make([]string, 0, (len(records)+1)*FieldsPerRecord)
	for _, rec := range records {
		out = append(out, rec.Fields()...)
	}
	return append(out, make([]string, FieldsPerRecord)...)
}

// ParseFieldGroups reads field groups until the first group whose storage
// address is empty. Nothing after the sentinel is read, and an incomplete
// trailing group is ignored.
func ParseFieldGroups(sender string, fields []string) ([]Record, error) {
	records := []Record{}
	for i := 0; i+FieldsPerRecord <= len(fields); i += FieldsPerRecord {
		if fields[i] == "" {
			break
		}
		key, err := ParseKeyWords(fields[i+1 : i+1+KeyWords])
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			Sender:         sender,
			StorageAddress: fields[i],
			Key:            key,
			FileName:       fields[i+FieldsPerRecord-1],
		})
	}
	return records, nil
}
