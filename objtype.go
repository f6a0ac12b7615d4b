package ole

type ObjectType int

const (
	Unallocated ObjectType = iota
	Storage
	Stream
	LockBytes
	Property
	Root
)

func (o ObjectType) AsByte() byte {
	switch o {
	case Unallocated:
		return OBJ_TYPE_UNALLOCATED
	case Storage:
		return OBJ_TYPE_STORAGE
	case Stream:
		return OBJ_TYPE_STREAM
	case LockBytes:
		return OBJ_TYPE_LOCKBYTES
	case Property:
		return OBJ_TYPE_PROPERTY
	case Root:
		return OBJ_TYPE_ROOT
	default:
		return 0
	}
}

// ObjectFromByte decodes the object type byte of a directory record.
func ObjectFromByte(b byte) (ObjectType, error) {
	switch b {
	case OBJ_TYPE_UNALLOCATED:
		return Unallocated, nil
	case OBJ_TYPE_STORAGE:
		return Storage, nil
	case OBJ_TYPE_STREAM:
		return Stream, nil
	case OBJ_TYPE_LOCKBYTES:
		return LockBytes, nil
	case OBJ_TYPE_PROPERTY:
		return Property, nil
	case OBJ_TYPE_ROOT:
		return Root, nil
	default:
		return Unallocated, nodeTypeError("object type %v", b)
	}
}

// IsStorage reports whether entries of this type hold children.
func (o ObjectType) IsStorage() bool {
	return o == Storage || o == Root
}

// inHierarchy reports whether entries of this type take part in the tree.
func (o ObjectType) inHierarchy() bool {
	return o == Storage || o == Stream || o == Root
}

func (o ObjectType) String() string {
	switch o {
	case Unallocated:
		return "empty"
	case Storage:
		return "storage"
	case Stream:
		return "stream"
	case LockBytes:
		return "lockbytes"
	case Property:
		return "property"
	case Root:
		return "root"
	default:
		return "unknown"
	}
}
