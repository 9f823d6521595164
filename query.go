package rowbind

// Query is the sql used by StructMapper (or StructMapper.Rows etc.) to read rows
//
// it should exclude the 'SELECT cols' - as the StructMapper already knows the columns to be read
type Query string

// AddClause is a sql clause that can be appended to the Query when using StructMapper.Rows, StructMapper.FirstRow etc.
type AddClause string
