// Package feed defines the wire contract between a feed service and its
// subscribers: the Event record, the FeedService gRPC descriptor, the CBOR
// message codec and optional zstd compression, plus a thin Client.
//
// There is no generated protobuf code. Messages are plain Go structs encoded
// with CBOR through a gRPC codec registered under the "cbor" content subtype,
// and the service descriptor is declared in this package.
//
//	c, _ := feed.Dial("127.0.0.1:2283", feed.DialOptions{Compression: "zstd"})
//	defer c.Close()
//	st, _ := c.Subscribe(ctx, feed.SubscribeRequest{
//	    EventTypes: []feed.EventType{feed.EventTypeMergeMessage},
//	    FromID:     &from,
//	})
//	for {
//	    ev, err := st.Recv()
//	    if err != nil {
//	        break
//	    }
//	    _ = ev
//	}
package feed
