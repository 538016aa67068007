// Package mqtt provides the message bus client for twinbridge.
//
// Both synchronization directions ride MQTT:
//
//   - Local registry change notifications (device created/deleted,
//     attributes requested) are published by the instance that performed
//     the mutation, tagged with its origin identity, and consumed by every
//     instance's forward synchronizer.
//   - Hub change-feed batches are delivered on a shared topic and consumed
//     by the reverse synchronizer.
//
// The package wraps eclipse/paho.mqtt.golang with connection management,
// automatic re-subscription after reconnect, panic recovery around message
// handlers, and Last Will and Testament for offline detection.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.HubEvents(), 1, func(topic string, payload []byte) error {
//	    return handleBatch(payload)
//	})
package mqtt
